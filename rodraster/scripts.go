package rodraster

const rasterizeJS = `(markup, width, height) => new Promise((resolve) => {
	const url = URL.createObjectURL(new Blob([markup], {type: 'image/svg+xml'}));
	const img = new Image();
	img.onload = () => {
		URL.revokeObjectURL(url);
		const canvas = document.createElement('canvas');
		canvas.width = width;
		canvas.height = height;
		const ctx = canvas.getContext('2d');
		ctx.clearRect(0, 0, width, height);
		ctx.drawImage(img, 0, 0, width, height);
		let data;
		try {
			data = ctx.getImageData(0, 0, width, height).data;
		} catch (e) {
			resolve({error: e.name === 'SecurityError' ? 'security' : 'read', message: String(e)});
			return;
		}
		let bin = '';
		for (let i = 0; i < data.length; i += 0x8000) {
			bin += String.fromCharCode.apply(null, data.subarray(i, i + 0x8000));
		}
		resolve({pixels: btoa(bin)});
	};
	img.onerror = () => {
		URL.revokeObjectURL(url);
		resolve({error: 'load', message: 'the SVG image failed to load'});
	};
	img.src = url;
})`

const boundsJS = `(markup) => {
	const doc = new DOMParser().parseFromString(markup, 'image/svg+xml');
	const failure = doc.querySelector('parsererror');
	if (failure) {
		return {error: 'parse', message: failure.textContent};
	}
	const svg = document.importNode(doc.documentElement, true);
	svg.style.position = 'absolute';
	svg.style.visibility = 'hidden';
	document.body.appendChild(svg);
	try {
		const b = svg.getBBox();
		return {x: b.x, y: b.y, width: b.width, height: b.height};
	} finally {
		svg.remove();
	}
}`

const fontsJS = `() => document.fonts.ready.then(() => ({}))`
