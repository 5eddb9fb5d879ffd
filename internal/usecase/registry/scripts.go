package registry

const markerClass = "ai-marker-label"

const interactiveSelector = `a[href], button, input:not([type='hidden']), select, textarea, ` +
	`[role='button'], [role='link'], [role='textbox'], [onclick], .btn, .button`

// annotateScript labels every visible interactive element in document order,
// draws the label on the page and returns one record per label.
const annotateScript = `() => {
	document.querySelectorAll('.` + markerClass + `').forEach(el => el.remove());

	const vw = window.innerWidth || document.documentElement.clientWidth;
	const vh = window.innerHeight || document.documentElement.clientHeight;
	const seen = new Set();
	const results = [];

	document.querySelectorAll("` + interactiveSelector + `").forEach(el => {
		if (seen.has(el)) return;

		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return;
		if (rect.bottom < 0 || rect.right < 0 || rect.top > vh || rect.left > vw) return;

		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none') return;

		seen.add(el);
		const label = results.length + 1;
		const x = Math.round(rect.left + window.scrollX);
		const y = Math.round(rect.top + window.scrollY);

		const marker = document.createElement('div');
		marker.className = '` + markerClass + `';
		marker.textContent = String(label);
		marker.style.cssText = 'position:absolute;left:' + x + 'px;top:' + y + 'px;' +
			'background:#e00;color:#fff;font:bold 12px sans-serif;padding:1px 4px;' +
			'border-radius:3px;z-index:999999;pointer-events:none;';
		document.body.appendChild(marker);

		let dataAttr = null;
		for (const attr of el.attributes) {
			if (attr.name.startsWith('data-')) {
				dataAttr = {name: attr.name, value: attr.value};
				break;
			}
		}

		const parent = el.parentElement;
		const nth = parent ? Array.prototype.indexOf.call(parent.children, el) + 1 : 1;
		const text = String(el.innerText || el.value || '').trim().slice(0, 100);

		results.push({
			label: label,
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			name: el.getAttribute('name') || '',
			classes: Array.from(el.classList),
			data_attr: dataAttr,
			aria_label: el.getAttribute('aria-label') || '',
			input_type: el.getAttribute('type') || '',
			placeholder: el.getAttribute('placeholder') || '',
			href: el.getAttribute('href') || '',
			text: text,
			nth_child: nth,
			x: x,
			y: y,
		});
	});

	return results;
}`

const clearScript = `() => {
	const markers = document.querySelectorAll('.` + markerClass + `');
	markers.forEach(el => el.remove());
	return markers.length;
}`
